// Package services holds the shared error taxonomy for external
// collaborators and its client subpackages.
package services
