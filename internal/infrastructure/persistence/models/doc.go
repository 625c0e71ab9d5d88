// Package models contains the gorm persistence models and their mapping to
// the domain types. Domain packages never import this package.
package models
