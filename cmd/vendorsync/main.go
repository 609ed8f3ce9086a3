package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"power-atlas/config"
	"power-atlas/vendorsync"
)

func main() {
	check := pflag.Bool("check", false, "report drift without rewriting the version file")
	repoRoot := pflag.String("repo-root", ".", "repository root")
	submodule := pflag.String("submodule", vendorsync.DefaultSubmodulePath, "path of the vendored submodule")
	versionFile := pflag.String("version-file", vendorsync.DefaultVersionFile, "JSON file holding pinned_commit_sha")
	pflag.Parse()

	logger, err := config.InitLogger("info", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	code, err := syncVendor(context.Background(), *repoRoot, *submodule, *versionFile, *check, logger)
	if err != nil {
		logger.Error("Vendor sync failed", zap.Error(err))
		code = 1
	}
	config.Cleanup()
	os.Exit(code)
}

// gitlinkSHA is replaced in tests.
var gitlinkSHA = vendorsync.GetGitlinkSHA

func syncVendor(ctx context.Context, repoRoot, submodule, versionFile string, checkOnly bool, logger *zap.Logger) (int, error) {
	sha, err := gitlinkSHA(ctx, repoRoot, submodule)
	if err != nil {
		return 1, err
	}
	if !filepath.IsAbs(versionFile) {
		versionFile = filepath.Join(repoRoot, versionFile)
	}
	return vendorsync.SyncVersionFile(versionFile, sha, checkOnly, logger)
}
