package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_MarshalJSON(t *testing.T) {
	d := Device{ID: 3, Name: "Pixel", OS: "Android", Manufacturer: "Google"}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"device":"Pixel","os":"Android","manufacturer":"Google","isCheckedOut":false}`, string(b))

	by := "Ann"
	at := time.Date(2017, 7, 3, 10, 0, 0, 0, time.FixedZone("", 2*3600))
	d.IsCheckedOut, d.LastCheckedOutBy, d.LastCheckedOutDate = true, &by, &at

	b, err = json.Marshal([]*Device{&d})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3,"device":"Pixel","os":"Android","manufacturer":"Google","isCheckedOut":true,
		"lastCheckedOutBy":"Ann","lastCheckedOutDate":"2017-07-03T10:00:00+02:00"}]`, string(b))
}
