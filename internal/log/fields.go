package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldOwnerID   = "owner_id"
	FieldAssetID   = "asset_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Media fields
	FieldFormat   = "format"
	FieldCodec    = "codec"
	FieldFilename = "filename"
	FieldSize     = "size_bytes"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"

	// Network fields
	FieldHost = "host"
)
