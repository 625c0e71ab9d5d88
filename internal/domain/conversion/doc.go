// Package conversion contains the ad-conversion delivery bounded context:
// the typed event payloads sent to the conversions endpoint and the outbox
// that keeps failed deliveries for retry with exponential backoff.
package conversion
