package crime

import (
	"context"

	"github.com/sells-group/glowpath/pkg/crimeapi"
)

type mockCrimeAPI struct {
	resp  *crimeapi.BaselineResponse
	err   error
	calls []crimeapi.BaselineRequest
}

func (m *mockCrimeAPI) Baseline(_ context.Context, req crimeapi.BaselineRequest) (*crimeapi.BaselineResponse, error) {
	m.calls = append(m.calls, req)
	return m.resp, m.err
}

func ptr[T any](v T) *T { return &v }
