package eval

import "github.com/pkg/errors"

// ErrNoData indicates a metric query on a result whose accumulated
// prediction and ground-truth sequences are both empty. There is nothing to
// compute over; the caller gets no partial answer.
var ErrNoData = errors.New("no predictions and/or ground truths found")
