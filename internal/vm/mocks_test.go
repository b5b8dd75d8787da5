package vm

import (
	"context"
	"sync"

	"github.com/burrowvm/burrow/internal/clone"
	"github.com/burrowvm/burrow/internal/utmctl"
)

// mockControlClient is a mock implementation of the controlClient
// interface for testing.
type mockControlClient struct {
	mu sync.Mutex

	// Configurable behavior
	statusFunc    func(name string) utmctl.Status
	ipAddressFunc func(name string) (string, error)
	existsFunc    func(name string) (bool, error)
	startFunc     func(name string, hidden bool) error
	stopFunc      func(name string) error
	suspendFunc   func(name string) error
	deleteFunc    func(name string) error
	listFunc      func() ([]utmctl.Instance, error)

	// Call tracking
	statusCalls  []string
	ipCalls      []string
	existsCalls  []string
	startCalls   []string // format: "name hidden=true"
	stopCalls    []string
	suspendCalls []string
	deleteCalls  []string
}

// newMockControlClient creates a mock whose instance exists and is
// already started.
func newMockControlClient() *mockControlClient {
	return &mockControlClient{
		statusFunc:    func(name string) utmctl.Status { return utmctl.StatusStarted },
		ipAddressFunc: func(name string) (string, error) { return "192.168.64.3", nil },
		existsFunc:    func(name string) (bool, error) { return true, nil },
		startFunc:     func(name string, hidden bool) error { return nil },
		stopFunc:      func(name string) error { return nil },
		suspendFunc:   func(name string) error { return nil },
		deleteFunc:    func(name string) error { return nil },
		listFunc:      func() ([]utmctl.Instance, error) { return nil, nil },
	}
}

// List lets the mock double as the hypervisor listing behind a real
// fleet scanner.
func (m *mockControlClient) List(context.Context) ([]utmctl.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listFunc()
}

func (m *mockControlClient) Status(_ context.Context, name string) utmctl.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls = append(m.statusCalls, name)
	return m.statusFunc(name)
}

func (m *mockControlClient) IPAddress(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipCalls = append(m.ipCalls, name)
	return m.ipAddressFunc(name)
}

func (m *mockControlClient) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls = append(m.existsCalls, name)
	return m.existsFunc(name)
}

func (m *mockControlClient) Start(_ context.Context, name string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := name + " hidden=false"
	if hidden {
		call = name + " hidden=true"
	}
	m.startCalls = append(m.startCalls, call)
	return m.startFunc(name, hidden)
}

func (m *mockControlClient) Stop(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls = append(m.stopCalls, name)
	return m.stopFunc(name)
}

func (m *mockControlClient) Suspend(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspendCalls = append(m.suspendCalls, name)
	return m.suspendFunc(name)
}

func (m *mockControlClient) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, name)
	return m.deleteFunc(name)
}

// mockCloneEngine is a mock implementation of the cloneEngine
// interface.
type mockCloneEngine struct {
	mu sync.Mutex

	cloneFunc func(label string, headless, attachDisk bool) (*clone.Result, error)

	// Call tracking: "label headless=x disk=y"
	cloneCalls []string
}

// newMockCloneEngine creates a mock whose clones succeed and echo the
// request.
func newMockCloneEngine() *mockCloneEngine {
	return &mockCloneEngine{
		cloneFunc: func(label string, headless, attachDisk bool) (*clone.Result, error) {
			return &clone.Result{
				Name:           "burrow-" + label,
				UUID:           "11111111-2222-3333-4444-555555555555",
				MACAddress:     "02:aa:bb:cc:dd:ee",
				DisplayEnabled: !headless,
				HasSharedDisk:  attachDisk,
			}, nil
		},
	}
}

func (m *mockCloneEngine) Clone(_ context.Context, label string, headless, attachDisk bool) (*clone.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := label
	if headless {
		call += " headless=true"
	} else {
		call += " headless=false"
	}
	if attachDisk {
		call += " disk=true"
	} else {
		call += " disk=false"
	}
	m.cloneCalls = append(m.cloneCalls, call)
	return m.cloneFunc(label, headless, attachDisk)
}

// mockScanner is a mock implementation of the resourceScanner
// interface.
type mockScanner struct {
	mu sync.Mutex

	membersFunc       func() ([]utmctl.Instance, error)
	displayInUseFunc  func(exclude string) (bool, error)
	diskInUseFunc     func(exclude string) (bool, error)
	hasDiskLinkFunc   func(name string) bool
	hasDisplayFunc    func(name string) bool
	displayInUseCalls int
	diskInUseCalls    int
}

// newMockScanner creates a mock reporting an empty, idle fleet.
func newMockScanner() *mockScanner {
	return &mockScanner{
		membersFunc:      func() ([]utmctl.Instance, error) { return nil, nil },
		displayInUseFunc: func(exclude string) (bool, error) { return false, nil },
		diskInUseFunc:    func(exclude string) (bool, error) { return false, nil },
		hasDiskLinkFunc:  func(name string) bool { return false },
		hasDisplayFunc:   func(name string) bool { return false },
	}
}

func (m *mockScanner) Members(context.Context) ([]utmctl.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membersFunc()
}

func (m *mockScanner) DisplayInUse(_ context.Context, exclude string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayInUseCalls++
	return m.displayInUseFunc(exclude)
}

func (m *mockScanner) SharedDiskInUse(_ context.Context, exclude string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diskInUseCalls++
	return m.diskInUseFunc(exclude)
}

func (m *mockScanner) HasDiskLink(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasDiskLinkFunc(name)
}

func (m *mockScanner) HasActiveDisplay(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasDisplayFunc(name)
}
