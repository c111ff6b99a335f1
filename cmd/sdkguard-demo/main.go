// Command sdkguard-demo runs a few guarded calls against a diagnostics
// endpoint and prints the markers the boundary recorded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/itsneelabh/sdkguard/boundary"
	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/identity"
	"github.com/itsneelabh/sdkguard/telemetry"
)

type indexError struct{ index int }

func (e *indexError) Error() string     { return "index out of range: " + strconv.Itoa(e.index) }
func (e *indexError) ErrorName() string { return "RangeError" }

func main() {
	configFile := flag.String("config", "", "path to a JSON or YAML config file")
	sdkKey := flag.String("key", "", "client SDK key (overrides SDKGUARD_SDK_KEY)")
	endpoint := flag.String("endpoint", "", "diagnostics endpoint (overrides config)")
	flag.Parse()

	opts := []core.Option{core.WithSampleRange(1)}
	if *configFile != "" {
		opts = append(opts, core.WithConfigFile(*configFile))
	}
	if *sdkKey != "" {
		opts = append(opts, core.WithSDKKey(*sdkKey))
	}
	if *endpoint != "" {
		opts = append(opts, core.WithEndpoint(*endpoint))
	}
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Telemetry.ServiceName)

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry, telemetry.WithProviderLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	b, err := boundary.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	id := identity.New(&identity.User{UserID: "demo-user"})
	id.SetSDKPackageInfo(identity.PackageInfo{SDKType: "go-client", SDKVersion: core.Version})
	id.SetDeviceInfo(identity.RuntimeDeviceInfo())
	b.SetMetadata(id.Metadata())

	values := []int{4, 8, 15}
	lookup := func(i int) func() (int, error) {
		return func() (int, error) {
			if i >= len(values) {
				return 0, &indexError{index: i}
			}
			return values[i], nil
		}
	}
	fallback := func() int { return -1 }

	for _, i := range []int{1, 7, 9} {
		v, err := boundary.Capture(b, "getValue", lookup(i), fallback)
		fmt.Printf("getValue(%d) = %d, err = %v\n", i, v, err)
	}

	_, err = boundary.Capture(b, "getValue", func() (int, error) {
		return 0, core.NewUninitializedError("getValue")
	}, fallback)
	if errors.Is(err, core.ErrNotInitialized) {
		fmt.Printf("usage error passed through: %v\n", err)
	}

	future := boundary.CaptureAsync(ctx, b, "fetchConfig", func(ctx context.Context) (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 0, errors.New("network unreachable")
	}, fallback)
	v, err := future.Await(ctx)
	fmt.Printf("fetchConfig = %d, err = %v\n", v, err)

	for _, m := range b.Diagnostics().Markers(cfg.Boundary.MarkerCategory) {
		fmt.Printf("marker %s closed=%t success=%t duration=%s\n", m.ID, m.Closed, m.Success, m.Duration())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.Close(shutdownCtx); err != nil {
		log.Printf("flush incomplete: %v", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
