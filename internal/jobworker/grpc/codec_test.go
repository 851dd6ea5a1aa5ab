package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	req := &SubmitJobRequest{JobID: "job-1", Method: "numpy_exact", Matrix: [][]float64{{1, 2}, {3, 4}}, RHS: []float64{5, 6}}

	b, err := c.Marshal(req)
	require.NoError(t, err)

	var decoded SubmitJobRequest
	require.NoError(t, c.Unmarshal(b, &decoded))
	assert.Equal(t, *req, decoded)
}
