// ABOUTME: Package dyndns53 implements a CoreDNS plugin speaking the DynDNS2 update protocol.
// ABOUTME: Validates Basic-Auth update requests and reconciles A/AAAA records against a DNS backend.

// Package dyndns53 implements a DynDNS2-compatible update endpoint. Clients
// report their current address over HTTP with Basic authentication; the plugin
// checks the credential against a static host mapping and points the requested
// address records at that address, writing to the backend only when the value
// actually changed.
//
// Two backends are provided: a local JSON-file Store whose records the plugin
// serves through the CoreDNS plugin chain, and Route 53.
package dyndns53
