package ledger

import (
	"context"
	"encoding/json"
	"fmt"
)

// Marshal returns the canonical stored bytes of a record. Records must only
// use fields whose JSON encoding is deterministic.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return data, nil
}

// GetJSON loads and decodes a record. It reports false when the key is absent.
func GetJSON(ctx context.Context, stub Stub, partition, key string, v any) (bool, error) {
	data, err := stub.GetPrivateData(ctx, partition, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes and stages a record.
func PutJSON(stub Stub, partition, key string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return stub.PutPrivateData(partition, key, data)
}

// ScanJSON decodes every record in [start, end) and calls fn in key order.
// A non-nil error from fn stops the scan.
func ScanJSON[T any](ctx context.Context, stub Stub, partition, start, end string, fn func(key string, rec T) error) error {
	it, err := stub.GetPrivateDataByRange(ctx, partition, start, end)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.HasNext() {
		kv, err := it.Next()
		if err != nil {
			return err
		}
		var rec T
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			return fmt.Errorf("decoding %s: %w", kv.Key, err)
		}
		if err := fn(kv.Key, rec); err != nil {
			return err
		}
	}
	return nil
}

// SetJSONEvent encodes payload and attaches it as the transaction's event.
func SetJSONEvent(stub Stub, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", name, err)
	}
	return stub.SetEvent(name, data)
}
