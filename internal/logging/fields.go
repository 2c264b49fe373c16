package logging

// Standard field names for consistent logging across the service.
const (
	FieldService    = "service"
	FieldTenantID   = "tenant_id"
	FieldBuildingID = "building_id"
	FieldRequestID  = "request_id"
	FieldActor      = "actor"
	FieldDuration   = "duration"
	FieldStatusCode = "status"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRemoteAddr = "remote_addr"
	FieldBytes      = "bytes"
)
