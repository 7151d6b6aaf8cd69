package overpass

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/geomodel"
)

type Status int

const (
	StatusTransientError Status = iota
	StatusFound
	StatusConfirmedEmpty
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusConfirmedEmpty:
		return "confirmed_empty"
	}
	return "transient_error"
}

// Response is the outcome of one query against one endpoint.
type Response struct {
	Status    Status
	Buildings []geomodel.Building
	Err       error
}

func Found(buildings []geomodel.Building) Response {
	return Response{Status: StatusFound, Buildings: buildings}
}

// ConfirmedEmpty means the provider answered and nothing matched the filter.
// Asking again cannot change that.
func ConfirmedEmpty() Response {
	return Response{Status: StatusConfirmedEmpty}
}

func TransientError(err error) Response {
	return Response{Status: StatusTransientError, Err: err}
}

// Provider answers bounding box queries for features carrying tag.
type Provider interface {
	Query(ctx context.Context, endpoint string, bound orb.Bound, tag string) Response
}
