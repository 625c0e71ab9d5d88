package integration

import "errors"

// ---------------------------------------------------------------------------
// Gateway Errors
// ---------------------------------------------------------------------------

var (
	// WMS errors
	ErrWMSNotConfigured   = errors.New("integration: wms not configured")
	ErrWMSUnavailable     = errors.New("integration: wms temporarily unavailable")
	ErrWMSRequestFailed   = errors.New("integration: wms request failed")
	ErrWMSInvalidResponse = errors.New("integration: invalid wms response")
	ErrWMSAuthFailed      = errors.New("integration: wms authentication failed")

	// Upstream data errors
	ErrLandingPageNotFound = errors.New("integration: landing page not found")
	ErrStoreNotFound       = errors.New("integration: store not found")
	ErrProductNotFound     = errors.New("integration: product not found in catalog")

	// Conversion errors
	ErrConversionNotConfigured = errors.New("integration: conversion credentials not configured")
	ErrConversionUnavailable   = errors.New("integration: conversion endpoint unavailable")
	ErrConversionRejected      = errors.New("integration: conversion event rejected")
)
