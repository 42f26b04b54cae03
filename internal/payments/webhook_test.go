package payments

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifySignatureAcceptsValidHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now().UTC()
	header := SignPayload(payload, testSecret, now)

	assert.NoError(t, VerifySignature(payload, header, testSecret, DefaultTolerance, now))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now().UTC()
	header := SignPayload(payload, "whsec_other", now)

	assert.ErrorIs(t, VerifySignature(payload, header, testSecret, DefaultTolerance, now), ErrBadSignature)
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	now := time.Now().UTC()
	header := SignPayload([]byte(`{"amount":100}`), testSecret, now)

	err := VerifySignature([]byte(`{"amount":999}`), header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now().UTC()
	header := SignPayload(payload, testSecret, now.Add(-10*time.Minute))

	err := VerifySignature(payload, header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrTimestampTooOld)
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	now := time.Now().UTC()
	for _, header := range []string{"", "t=abc,v1=ff", "v1=deadbeef", "t=123"} {
		assert.ErrorIs(t, VerifySignature([]byte(`{}`), header, testSecret, DefaultTolerance, now), ErrBadSignature, header)
	}
}

func TestVerifySignatureAcceptsAnyMatchingV1(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now().UTC()
	valid := SignPayload(payload, testSecret, now)
	// Prepend a signature from a rotated secret; the later v1
	// entry still verifies.
	i := strings.Index(valid, ",")
	header := valid[:i] + ",v1=00ab" + valid[i:]

	assert.NoError(t, VerifySignature(payload, header, testSecret, DefaultTolerance, now))
}

func TestParseEventDecodesEnvelope(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","status":"succeeded","metadata":{"order_id":"ord-1"}}}}`)
	header := SignPayload(payload, testSecret, time.Now().UTC())

	ev, err := ParseEvent(payload, header, testSecret, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", ev.Type)

	var obj IntentObject
	require.NoError(t, json.Unmarshal(ev.Data.Object, &obj))
	assert.Equal(t, "pi_123", obj.ID)
	assert.Equal(t, "ord-1", obj.Metadata.OrderID)
}
