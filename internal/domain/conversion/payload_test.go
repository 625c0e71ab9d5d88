package conversion

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseEventID(t *testing.T) {
	id := uuid.MustParse("7b0d9a4e-3f51-4a6e-9d43-0c8f1c2b6a11")
	assert.Equal(t, "purchase_7b0d9a4e-3f51-4a6e-9d43-0c8f1c2b6a11", PurchaseEventID(id))
}

func TestEventPayload_JSON(t *testing.T) {
	orderID := uuid.New()
	payload := newTestPayload(orderID)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Purchase", raw["event_name"])
	assert.Equal(t, "pixel-1", raw["pixel_id"])
	assert.Equal(t, "TEST123", raw["test_event_code"])
	event, ok := raw["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, PurchaseEventID(orderID), event["event_id"])
	assert.Equal(t, "Purchase", event["event_name"])

	var decoded EventPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Purchase)
	assert.Equal(t, payload.Credentials, decoded.Credentials)
	assert.Equal(t, payload.EventID(), decoded.EventID())
	assert.InDelta(t, 150.0, decoded.Purchase.CustomData.Value, 0.0001)
}

func TestEventPayload_UnknownEventName(t *testing.T) {
	var p EventPayload
	err := json.Unmarshal([]byte(`{"event_name":"AddToCart","pixel_id":"1","event":{}}`), &p)
	assert.ErrorIs(t, err, ErrUnknownEventName)
}

func TestEventPayload_MissingBody(t *testing.T) {
	var p EventPayload
	err := json.Unmarshal([]byte(`{"event_name":"Purchase","pixel_id":"1"}`), &p)
	assert.ErrorIs(t, err, ErrMissingEvent)

	_, err = json.Marshal(EventPayload{EventName: EventNamePurchase, PixelID: "1"})
	assert.Error(t, err)
}
