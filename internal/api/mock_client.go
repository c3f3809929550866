package api

import (
	"context"
	"sync"

	"github.com/diogo/friendlychat/internal/config"
)

// MockClient is a mock implementation of ClientInterface for testing.
// It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	// Mock return values
	InitErr        error
	IsClosedVal    bool
	ConfigVal      config.Config
	Creds          *config.Credentials
	IDTokenVal     string
	IDTokenErr     error
	SignInVal      *config.Credentials
	SignInErr      error
	SignUpVal      *config.Credentials
	SignUpErr      error
	GoogleVal      *config.Credentials
	GoogleErr      error
	RefreshErr     error
	ProfileVal     *Profile
	ProfileErr     error
	UpdateNameErr  error
	PushKeys       []string // returned in order; a generated key is used once exhausted
	PushErr        error
	SubscribeErr   error
	UploadVal      *ObjectMetadata
	UploadErr      error
	DownloadURLVal string
	DownloadURLErr error
	DownloadVal    string
	DownloadErr    error

	// SubscribeFunc, when set, replaces the default Subscribe behavior.
	SubscribeFunc func(ctx context.Context, path string) (<-chan ChildEvent, error)

	// Call counters/recorders
	InitCalled      bool
	CloseCalled     bool
	RefreshCalls    int
	Pushed          []any
	PushedPaths     []string
	SubscribeCalls  int
	Subscriptions   []chan ChildEvent
	UploadedObjects []string
	LastSignInEmail string
	LastGoogleToken string
}

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalled = true
	return m.InitErr
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	m.IsClosedVal = true
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsClosedVal
}

func (m *MockClient) Config() config.Config {
	return m.ConfigVal
}

func (m *MockClient) Credentials() *config.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Creds
}

func (m *MockClient) SetCredentials(creds *config.Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creds = creds
}

func (m *MockClient) IDToken(ctx context.Context) (string, error) {
	return m.IDTokenVal, m.IDTokenErr
}

func (m *MockClient) SignInWithPassword(ctx context.Context, email, password string) (*config.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSignInEmail = email
	if m.SignInErr != nil {
		return nil, m.SignInErr
	}
	m.Creds = m.SignInVal
	return m.SignInVal, nil
}

func (m *MockClient) SignUp(ctx context.Context, email, password, displayName string) (*config.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSignInEmail = email
	if m.SignUpErr != nil {
		return nil, m.SignUpErr
	}
	if m.SignUpVal != nil {
		m.SignUpVal.SetDisplayName(displayName)
	}
	m.Creds = m.SignUpVal
	return m.SignUpVal, nil
}

func (m *MockClient) SignInWithGoogle(ctx context.Context, googleIDToken string) (*config.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastGoogleToken = googleIDToken
	if m.GoogleErr != nil {
		return nil, m.GoogleErr
	}
	m.Creds = m.GoogleVal
	return m.GoogleVal, nil
}

func (m *MockClient) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++
	return m.RefreshErr
}

func (m *MockClient) LookupProfile(ctx context.Context) (*Profile, error) {
	return m.ProfileVal, m.ProfileErr
}

func (m *MockClient) UpdateDisplayName(ctx context.Context, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateNameErr == nil && m.Creds != nil {
		m.Creds.SetDisplayName(displayName)
	}
	return m.UpdateNameErr
}

func (m *MockClient) Push(ctx context.Context, path string, value any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushErr != nil {
		return "", m.PushErr
	}
	m.Pushed = append(m.Pushed, value)
	m.PushedPaths = append(m.PushedPaths, path)
	if len(m.PushKeys) > 0 {
		key := m.PushKeys[0]
		m.PushKeys = m.PushKeys[1:]
		return key, nil
	}
	return mockKey(len(m.Pushed)), nil
}

// Subscribe returns a new channel per call, recorded in Subscriptions.
// The channel is closed when ctx is cancelled.
func (m *MockClient) Subscribe(ctx context.Context, path string) (<-chan ChildEvent, error) {
	m.mu.Lock()
	m.SubscribeCalls++
	fn := m.SubscribeFunc
	err := m.SubscribeErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	ch := make(chan ChildEvent, streamBuffer)
	m.mu.Lock()
	m.Subscriptions = append(m.Subscriptions, ch)
	m.mu.Unlock()
	return ch, nil
}

// Subscription returns the i-th channel handed out by Subscribe, or nil.
func (m *MockClient) Subscription(i int) chan ChildEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.Subscriptions) {
		return nil
	}
	return m.Subscriptions[i]
}

// PushedValues returns a copy of everything pushed so far.
func (m *MockClient) PushedValues() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Pushed...)
}

func (m *MockClient) UploadObject(ctx context.Context, objectName string, data []byte, contentType string) (*ObjectMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return nil, m.UploadErr
	}
	m.UploadedObjects = append(m.UploadedObjects, objectName)
	if m.UploadVal != nil {
		return m.UploadVal, nil
	}
	return &ObjectMetadata{Name: objectName, ContentType: contentType, Size: int64(len(data))}, nil
}

func (m *MockClient) DownloadURL(ctx context.Context, objectName string) (string, error) {
	return m.DownloadURLVal, m.DownloadURLErr
}

func (m *MockClient) DownloadPhoto(ctx context.Context, photoURL string, opts DownloadOptions) (string, error) {
	return m.DownloadVal, m.DownloadErr
}

func mockKey(n int) string {
	const digits = "0123456789"
	key := []byte("-Mock")
	for _, d := range []int{n / 1000 % 10, n / 100 % 10, n / 10 % 10, n % 10} {
		key = append(key, digits[d])
	}
	return string(key)
}
