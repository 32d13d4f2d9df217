package progressor

import "github.com/google/uuid"

// DefaultDeviceName is the advertised name apps look for
const DefaultDeviceName = "Progressor_2639"

var (

	// ServiceUUID identifies the primary Progressor service
	ServiceUUID = uuid.MustParse("7e4e1701-1ea6-40c9-9dcc-13d34ffead57")

	// DataPointUUID identifies the notifying data point characteristic
	DataPointUUID = uuid.MustParse("7e4e1702-1ea6-40c9-9dcc-13d34ffead57")

	// ControlPointUUID identifies the writable control point characteristic
	ControlPointUUID = uuid.MustParse("7e4e1703-1ea6-40c9-9dcc-13d34ffead57")
)
