// ABOUTME: Codecs that turn a durable value into the string stored under its key
// ABOUTME: JSON is the default; YAML and caller-supplied function pairs are available

package durable

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec converts values of T to and from their stored string form.
// Decode(Encode(x)) must equal x for every value the owner produces; a pair that
// does not round-trip corrupts the stored data and is not detected here.
type Codec[T any] interface {
	Encode(v T) (string, error)
	Decode(s string) (T, error)
}

// JSONCodec stores values as JSON text.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return string(b), nil
}

func (JSONCodec[T]) Decode(s string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("decoding json: %w", err)
	}
	return v, nil
}

// YAMLCodec stores values as YAML documents.
type YAMLCodec[T any] struct{}

func (YAMLCodec[T]) Encode(v T) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return string(b), nil
}

func (YAMLCodec[T]) Decode(s string) (T, error) {
	var v T
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("decoding yaml: %w", err)
	}
	return v, nil
}

// FuncCodec adapts a pair of functions to Codec.
type FuncCodec[T any] struct {
	EncodeFunc func(T) (string, error)
	DecodeFunc func(string) (T, error)
}

func (c FuncCodec[T]) Encode(v T) (string, error) { return c.EncodeFunc(v) }

func (c FuncCodec[T]) Decode(s string) (T, error) { return c.DecodeFunc(s) }
