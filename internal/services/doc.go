// Package services provides cross-cutting helpers shared by the router,
// stage workers, and boundary surfaces: context annotations for structured
// logging and the sentinel error taxonomy that drives retry/poison
// classification in the workflow manager.
package services
