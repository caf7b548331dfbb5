// Package sso_signal implements the TEE-attested market-signal oracle for SSO nodes.
//
// Providers run enclaves that analyze market data and emit signed receipts
// binding each signal to its submitter. When a provider submits a signal via
// the SQL action layer, the extension:
// 1. Parses the fixed-layout payload blobs (market context, assessment, receipt)
// 2. Runs the admission pipeline in a fixed order (policy gates before crypto)
// 3. Verifies the attestation binding against the provider's enclave allowlist
// 4. Persists the admitted record in consensus state (main namespace tables)
//
// Key components:
// - Precompile methods: policy ops, registry ops, signal lifecycle, read views
// - internal/engine: the deterministic rule set shared by submit/update/revoke
// - internal/attest: binding hash, receipt verification, local attester probe
// - Report refresher: node-local gocron job caching this node's own enclave
//   identity for the node_attestation view (observability only, no consensus)
//
// Initialize the extension by calling InitializeExtension() during node startup.
package sso_signal
