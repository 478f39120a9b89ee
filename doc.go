// Package ice implements the core of an Interactive Connectivity
// Establishment agent (RFC 8445): candidate gathering bookkeeping, check-list
// construction and pruning, the connectivity-check state machine, and the
// authenticated STUN Binding probe that pairs, probes, and nominates
// transport addresses between two peers.
//
// The STUN transaction machinery, DNS SRV resolution, TURN allocation, and
// the datagram socket itself are treated as external collaborators (see the
// stunmsg package and the RelayAllocator interface) rather than
// reimplemented here.
package ice
