// Package integration contains the ports to the external systems the
// fulfillment flow talks to.
//
// Key concepts:
//   - WMSGateway: port for creating orders in the warehouse management system
//   - ConversionGateway: port for delivering conversion events to the ad platform
//   - SyncResult / DeliveryResult: explicit success-or-failure results; gateway
//     failures are values, never panics or bare errors
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
