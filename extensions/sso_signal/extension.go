package sso_signal

import (
	"sync"

	"github.com/trufnetwork/kwil-db/common"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/syncschecker"
)

// ExtensionName is the precompile namespace of the signal oracle.
const ExtensionName = "sso_signal"

// signalExtension carries the node-local state of the oracle: the logger,
// this machine's attester capability, and the background report refresher.
// Consensus state lives in main-namespace tables; admission logic reads
// nothing from this struct, so nodes with different local setups still
// reach identical decisions.
type signalExtension struct {
	logger  log.Logger
	service *common.Service

	cfg         Config
	attester    attest.Attester
	refresher   *reportRefresher
	syncChecker *syncschecker.Checker

	// latest local probe result, nil until the refresher has run
	report *attest.PlatformReport

	mu sync.RWMutex
}

var (
	extensionOnce sync.Once
	extensionInst *signalExtension
)

// getExtension returns the singleton instance, initialising it lazily so
// tests can replace or reset state as needed.
func getExtension() *signalExtension {
	extensionOnce.Do(func() {
		extensionInst = &signalExtension{
			logger: log.New(log.WithLevel(log.LevelInfo)).New(ExtensionName),
			cfg:    DefaultConfig(),
		}
	})
	return extensionInst
}

// SetExtension allows tests to inject a pre-configured instance.
func SetExtension(ext *signalExtension) {
	extensionInst = ext
}

// Logger provides the extension logger, defaulting to a module-specific
// child of the global logger.
func (e *signalExtension) Logger() log.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// Service retrieves the cached service pointer. Storing it lets the
// extension re-use the node identity and logger outside hook invocations.
func (e *signalExtension) Service() *common.Service {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.service
}

// setService captures the service and refreshes the module logger.
func (e *signalExtension) setService(svc *common.Service) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.service = svc
	if svc != nil && svc.Logger != nil {
		e.logger = svc.Logger.New(ExtensionName)
	}
}

func (e *signalExtension) setConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *signalExtension) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *signalExtension) setAttester(a attest.Attester) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attester = a
}

// Attester returns this node's attestation capability. May be nil before
// the engine-ready hook has run.
func (e *signalExtension) Attester() attest.Attester {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attester
}

// setRefresher swaps the background refresher, stopping any previous one so
// restarts never leave two schedulers running.
func (e *signalExtension) setRefresher(r *reportRefresher) {
	e.mu.Lock()
	prev := e.refresher
	e.refresher = r
	e.mu.Unlock()
	if prev != nil && prev != r {
		prev.Stop()
	}
}

func (e *signalExtension) Refresher() *reportRefresher {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.refresher
}

func (e *signalExtension) setSyncChecker(sc *syncschecker.Checker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncChecker = sc
}

func (e *signalExtension) SyncChecker() *syncschecker.Checker {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.syncChecker
}

// recordReport caches the latest local probe result for the
// node_attestation view.
func (e *signalExtension) recordReport(rep *attest.PlatformReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.report = rep
}

// LatestReport returns the most recent local probe result, nil if the
// refresher has not produced one yet.
func (e *signalExtension) LatestReport() *attest.PlatformReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report
}
