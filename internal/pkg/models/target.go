package models

// A page to audit. Name is the unique key used for artifact file names and
// for the load-test join.
type Target struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Output of one successful audit attempt. HTML is the human-readable report,
// JSON the machine-readable one: raw bytes or text are written verbatim,
// any other value is serialized before it is persisted.
type Artifacts struct {
	Name string
	HTML []byte
	JSON any
}
