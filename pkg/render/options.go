package render

// Options are per-request knobs shared by the built-in renderers. Renderers
// ignore the members they have no use for.
type Options struct {
	// Action and Method end up on the HTML <form> element.
	Action string
	Method string
	// Hidden inputs emitted before the visible fields.
	Hidden []HiddenField
	// Errors are server-side messages keyed by field id, typically produced
	// by MapErrorPayload. They are shown next to the preview violations.
	Errors map[string][]string
	// FormErrors are messages that belong to no particular field.
	FormErrors []string
}
