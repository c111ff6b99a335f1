// Package identity assembles the SDK metadata attached to exception reports.
package identity

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// Metadata keys produced by Identity.Metadata.
const (
	KeySDKType         = "sdkType"
	KeySDKVersion      = "sdkVersion"
	KeyStableID        = "stableID"
	KeySessionID       = "sessionID"
	KeyAppVersion      = "appVersion"
	KeySystemVersion   = "systemVersion"
	KeySystemName      = "systemName"
	KeyDeviceModelName = "deviceModelName"
	KeyDeviceModel     = "deviceModel"
)

// User is the end user the host SDK evaluates for.
type User struct {
	UserID     string         `json:"userID,omitempty"`
	Email      string         `json:"email,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Country    string         `json:"country,omitempty"`
	Locale     string         `json:"locale,omitempty"`
	AppVersion string         `json:"appVersion,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Custom != nil {
		cp.Custom = make(map[string]any, len(u.Custom))
		for k, v := range u.Custom {
			cp.Custom[k] = v
		}
	}
	return &cp
}

// PackageInfo names the SDK that embeds the boundary.
type PackageInfo struct {
	SDKType    string
	SDKVersion string
}

// DeviceInfo is a native device-information provider. Empty strings mean
// the value is unknown.
type DeviceInfo interface {
	Version() string
	SystemVersion() string
	SystemName() string
	Model() string
	DeviceID() string
}

// AppConstants carries the application build identifiers.
// NativeAppVersion wins over NativeBuildVersion when both are set.
type AppConstants struct {
	NativeAppVersion   string
	NativeBuildVersion string
}

// Device describes the host device when no DeviceInfo provider exists.
type Device struct {
	OSVersion string
	OSName    string
	ModelName string
	ModelID   string
}

// Identity is safe for concurrent use.
type Identity struct {
	mu         sync.RWMutex
	user       *User
	stableID   string
	sessionID  string
	pkg        PackageInfo
	deviceInfo DeviceInfo
	app        *AppConstants
	device     *Device
}

// Option configures an Identity.
type Option func(*Identity)

// WithStableID reuses a stable id persisted by the host instead of minting one.
func WithStableID(id string) Option {
	return func(i *Identity) {
		if id != "" {
			i.stableID = id
		}
	}
}

// New creates an Identity for user, which may be nil.
func New(user *User, opts ...Option) *Identity {
	i := &Identity{
		user:      user.clone(),
		stableID:  uuid.NewString(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// User returns a copy of the current user, or nil.
func (i *Identity) User() *User {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.user.clone()
}

// UpdateUser replaces the current user. nil clears it.
func (i *Identity) UpdateUser(user *User) {
	i.mu.Lock()
	i.user = user.clone()
	i.mu.Unlock()
}

// StableID returns the id that survives across sessions.
func (i *Identity) StableID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.stableID
}

// SessionID returns the id minted for this Identity.
func (i *Identity) SessionID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.sessionID
}

func (i *Identity) SetSDKPackageInfo(pkg PackageInfo) {
	i.mu.Lock()
	i.pkg = pkg
	i.mu.Unlock()
}

func (i *Identity) SetDeviceInfo(info DeviceInfo) {
	i.mu.Lock()
	i.deviceInfo = info
	i.mu.Unlock()
}

func (i *Identity) SetAppConstants(app AppConstants) {
	i.mu.Lock()
	i.app = &app
	i.mu.Unlock()
}

func (i *Identity) SetDevice(device Device) {
	i.mu.Lock()
	i.device = &device
	i.mu.Unlock()
}

// Metadata returns the report metadata. Unknown values are left out.
// A DeviceInfo provider overrides AppConstants and Device for the keys it knows.
func (i *Identity) Metadata() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()

	md := make(map[string]any, 9)
	set := func(key, value string) {
		if value != "" {
			md[key] = value
		}
	}

	set(KeySDKType, i.pkg.SDKType)
	set(KeySDKVersion, i.pkg.SDKVersion)
	set(KeyStableID, i.stableID)
	set(KeySessionID, i.sessionID)

	if i.app != nil {
		if i.app.NativeAppVersion != "" {
			set(KeyAppVersion, i.app.NativeAppVersion)
		} else {
			set(KeyAppVersion, i.app.NativeBuildVersion)
		}
	}
	if i.device != nil {
		set(KeySystemVersion, i.device.OSVersion)
		set(KeySystemName, i.device.OSName)
		set(KeyDeviceModelName, i.device.ModelName)
		set(KeyDeviceModel, i.device.ModelID)
	}
	if i.deviceInfo != nil {
		set(KeyAppVersion, i.deviceInfo.Version())
		set(KeySystemVersion, i.deviceInfo.SystemVersion())
		set(KeySystemName, i.deviceInfo.SystemName())
		set(KeyDeviceModelName, i.deviceInfo.Model())
		set(KeyDeviceModel, i.deviceInfo.DeviceID())
	}

	return md
}

type runtimeDeviceInfo struct{}

func (runtimeDeviceInfo) Version() string       { return "" }
func (runtimeDeviceInfo) SystemVersion() string { return runtime.Version() }
func (runtimeDeviceInfo) SystemName() string    { return runtime.GOOS }
func (runtimeDeviceInfo) Model() string         { return runtime.GOARCH }
func (runtimeDeviceInfo) DeviceID() string      { return "" }

// RuntimeDeviceInfo describes the current Go process: GOOS as the system
// name, the Go version as the system version and GOARCH as the model.
func RuntimeDeviceInfo() DeviceInfo {
	return runtimeDeviceInfo{}
}
