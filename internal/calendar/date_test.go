package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_AddDays(t *testing.T) {
	d := Date{2024, time.February, 28}

	assert.Equal(t, Date{2024, time.February, 29}, d.AddDays(1))
	assert.Equal(t, Date{2024, time.March, 1}, d.AddDays(2))
	assert.Equal(t, Date{2023, time.December, 31}, Date{2024, time.January, 1}.AddDays(-1))
	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
}

func TestDate_Ordering(t *testing.T) {
	a := Date{2024, time.January, 31}
	b := Date{2024, time.February, 1}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.True(t, b.After(a))
	assert.False(t, a.Before(a))
}

func TestDate_Of(t *testing.T) {
	ts := time.Date(2024, time.January, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, Date{2024, time.January, 1}, Of(ts, time.UTC))
	assert.Equal(t, Date{2024, time.January, 2}, Of(ts, time.FixedZone("UTC+1", 3600)))
	assert.Equal(t, Date{2024, time.January, 1}, Of(ts, nil))
}

func TestDate_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{Date{2024, time.March, 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-05"}`, string(out))

	var in struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-12-31"}`), &in))
	assert.Equal(t, Date{2024, time.December, 31}, in.Date)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"31/12/2024"}`), &in))
}
