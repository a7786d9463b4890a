package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sourceproof/internal/ledger"
	"github.com/pendergraft/sourceproof/internal/packfile"
	"github.com/pendergraft/sourceproof/internal/verification/domain"
)

func createVerifyCmd() *cobra.Command {
	var path string
	var endpoint string
	var address string
	var deps bool
	var mode string
	var collectAll bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a compiled package against the chain",
		Long: `Verify that the bytecode published on-chain matches a local build directory.

The build directory must contain a sourceproof.toml manifest and a
bytecode_modules/ directory; dependencies live under deps/.

EXAMPLES:
  # Verify all published dependencies of a build
  sourceproof verify --path ./build/defi_pool --deps

  # Verify the root package at an explicit address, plus its dependencies
  sourceproof verify --path ./build/defi_pool --address 0x2a... --deps

  # Verify the root against the address embedded at compile time
  sourceproof verify --path ./build/defi_pool --mode verify

  # Collect every divergence instead of stopping at the first
  sourceproof verify --path ./build/defi_pool --deps --all
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(path, endpoint, address, deps, mode, collectAll, timeout)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "build directory")
	cmd.Flags().StringVar(&endpoint, "ledger", "http://127.0.0.1:9000", "ledger RPC endpoint")
	cmd.Flags().StringVar(&address, "address", "", "on-chain address of the root package")
	cmd.Flags().BoolVar(&deps, "deps", false, "verify published dependencies")
	cmd.Flags().StringVar(&mode, "mode", "skip", "root handling without --address: skip or verify")
	cmd.Flags().BoolVar(&collectAll, "all", false, "report every divergence instead of the first")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout")

	return cmd
}

func runVerify(path, endpoint, address string, deps bool, mode string, collectAll bool, timeout time.Duration) error {
	pkg, err := packfile.Load(path)
	if err != nil {
		return fmt.Errorf("loading build directory: %w", err)
	}

	client, err := ledger.NewClient(endpoint, ledger.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return fmt.Errorf("initializing ledger client: %w", err)
	}
	verifier := domain.NewVerifier(client, domain.WithFailFast(!collectAll))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var verifyErr error
	switch {
	case address != "":
		target, err := domain.ParseAddress(address)
		if err != nil {
			return fmt.Errorf("invalid --address: %w", err)
		}
		if deps {
			verifyErr = verifier.VerifyPackageRootAndDeps(ctx, pkg, target)
		} else {
			verifyErr = verifier.VerifyPackageRoot(ctx, pkg, target)
		}
	case mode == "skip" && deps:
		verifyErr = verifier.VerifyPackageDeps(ctx, pkg)
	default:
		var sourceMode domain.SourceMode
		switch mode {
		case "skip":
			sourceMode = domain.SourceModeSkip
		case "verify":
			sourceMode = domain.SourceModeVerify
		default:
			return fmt.Errorf("invalid --mode %q: must be skip or verify", mode)
		}
		verifyErr = verifier.VerifyPackage(ctx, pkg, deps, sourceMode)
	}

	closure := domain.DependencyClosure(pkg)
	fmt.Printf("Package:      %s\n", pkg.Name)
	fmt.Printf("Modules:      %d\n", len(pkg.Modules))
	fmt.Printf("Dependencies: %d published\n", len(closure))

	if verifyErr != nil {
		fmt.Println()
		fmt.Println("❌ Verification failed:")
		for _, e := range splitJoined(verifyErr) {
			fmt.Printf("   [%s] %v\n", domain.ErrorKind(e), e)
		}
		return fmt.Errorf("verification failed")
	}

	fmt.Println()
	fmt.Println("✅ Bytecode verified")
	return nil
}

// splitJoined flattens an errors.Join result for display.
func splitJoined(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
