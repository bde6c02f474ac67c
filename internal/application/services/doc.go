// Package services provides the business logic layer for the portal's
// web form engine.
//
// This package contains the service implementations that handle:
//   - Session lifecycle and step navigation (SessionController)
//   - Resolving the record a step operates on (ReferenceResolver)
//   - Deriving the user-facing progress indicator (ProgressProjector)
//
// All services follow clean architecture principles with dependency injection
// and are designed to be testable and maintainable.
package services
