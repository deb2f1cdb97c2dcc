package durable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string            `json:"name" yaml:"name"`
	Tags  []string          `json:"tags" yaml:"tags"`
	Extra map[string]int    `json:"extra" yaml:"extra"`
	Ptr   *int              `json:"ptr" yaml:"ptr"`
	Grid  [][3]string       `json:"grid" yaml:"grid"`
	Meta  map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

func TestCodecs_RoundTrip(t *testing.T) {
	seven := 7
	in := record{
		Name:  "Mitch",
		Tags:  []string{"a", "b"},
		Extra: map[string]int{"x": 1},
		Ptr:   &seven,
		Grid:  [][3]string{{"X", "", "O"}},
	}

	codecs := map[string]Codec[record]{
		"json": JSONCodec[record]{},
		"yaml": YAMLCodec[record]{},
	}

	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			s, err := c.Encode(in)
			require.NoError(t, err)

			out, err := c.Decode(s)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestJSONCodec_DecodeError(t *testing.T) {
	_, err := JSONCodec[int]{}.Decode("nope")
	assert.Error(t, err)
}

func TestJSONCodec_EncodeError(t *testing.T) {
	_, err := JSONCodec[chan int]{}.Encode(make(chan int))
	assert.Error(t, err)
}
