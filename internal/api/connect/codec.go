package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// jsonCodec marshals the plain message structs of this package. connect's
// built-in JSON codec only accepts protobuf messages.
type jsonCodec struct{}

// Name implements connect.Codec.
func (jsonCodec) Name() string {
	return "json"
}

// Marshal implements connect.Codec.
func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}
