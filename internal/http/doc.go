// Package http exposes the session scheduler over a JSON API.
//
// Templates:
//   - POST /templates: create a recurring template and generate its occurrences. Body is
//     the templateRequest payload defined in template_handler.go; the response carries
//     the stored template and the generation result.
//   - GET /templates/{id}: the template, its RRULE and its occurrences.
//   - PUT /templates/{id}: replace the template's rule and display fields, then generate.
//   - POST /templates/{id}/generate: run the generator for one template.
//   - POST /templates/generate: run the generator for every eligible template.
//   - POST /templates/{id}/sync: copy the template's assignments onto its occurrences.
//   - GET /templates/{id}/calendar.ics: iCalendar feed of the template's occurrences.
//
// Sessions:
//   - GET /sessions/selectable: sessions a counter may pick now, with remaining time.
//   - GET /sessions/{id}, DELETE /sessions/{id}.
//   - GET /sessions/{id}/assignments, PUT /sessions/{id}/assignments (optional propagate).
//   - PUT /sessions/{id}/status: lifecycle transition.
//   - POST /sessions/{id}/sync: copy an occurrence's assignments onto later siblings.
//   - GET /sessions/{id}/access: write access classification.
//
// Dates travel as YYYY-MM-DD, instants as RFC 3339.
package http
