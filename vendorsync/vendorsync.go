package vendorsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	apperrors "power-atlas/errors"
)

// Defaults for the vendored graphrag library.
const (
	DefaultSubmodulePath = "vendor/neo4j-graphrag-python"
	DefaultVersionFile   = "docs/vendor/neo4j-graphrag-python.version.json"
	pinnedSHAKey         = "pinned_commit_sha"
)

// Exit codes returned by SyncVersionFile.
const (
	ExitInSync    = 0
	ExitOutOfSync = 1
)

// runGit is replaced in tests.
var runGit = func(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: git %s: %w: %s", apperrors.ErrGitOperation, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// GetGitlinkSHA returns the commit recorded in the index for submodulePath.
func GetGitlinkSHA(ctx context.Context, repoRoot, submodulePath string) (string, error) {
	out, err := runGit(ctx, repoRoot, "ls-files", "--stage", "--", submodulePath)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return "", fmt.Errorf("%w: %w: no gitlink entry found for %s", apperrors.ErrGitOperation, apperrors.ErrNotFound, submodulePath)
	}
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", apperrors.WrapErrorf(apperrors.ErrGitOperation, "unexpected gitlink format: %s", line)
	}
	return parts[1], nil
}

// SyncVersionFile compares the pinned_commit_sha in the JSON file at path
// with sha. It returns ExitInSync when they match. Otherwise, with checkOnly
// it returns ExitOutOfSync; without it the file is rewritten with the new
// sha, key order preserved, 2-space indent and a trailing newline.
func SyncVersionFile(path, sha string, checkOnly bool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read version file: %w", err)
	}

	data := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, data); err != nil {
		return 0, fmt.Errorf("parse version file %s: %w", path, err)
	}

	var current string
	if v, ok := data.Get(pinnedSHAKey); ok {
		// a non-string value never matches
		_ = json.Unmarshal(v, &current)
	}
	if current == sha {
		logger.Info("Version file already in sync", zap.String("path", path), zap.String("sha", sha))
		return ExitInSync, nil
	}

	if checkOnly {
		logger.Error("Version file is out of sync",
			zap.String("path", path),
			zap.String(pinnedSHAKey, current),
			zap.String("gitlink_sha", sha))
		return ExitOutOfSync, nil
	}

	encodedSHA, err := marshalString(sha)
	if err != nil {
		return 0, fmt.Errorf("encode sha: %w", err)
	}
	data.Set(pinnedSHAKey, encodedSHA)

	out, err := encodeVersionFile(data)
	if err != nil {
		return 0, fmt.Errorf("encode version file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat version file: %w", err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("write version file: %w", err)
	}

	logger.Info("Updated pinned commit", zap.String("path", path), zap.String("sha", sha))
	return ExitInSync, nil
}

// encodeVersionFile writes data as a 2-space indented object with a trailing
// newline. The ordered map's own MarshalJSON escapes <, > and &, so keys and
// values are emitted here to keep them as written.
func encodeVersionFile(data *orderedmap.OrderedMap[string, json.RawMessage]) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for pair := data.Oldest(); pair != nil; pair = pair.Next() {
		if pair != data.Oldest() {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  ")
		key, err := marshalString(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		if err := json.Indent(&buf, pair.Value, "  ", "  "); err != nil {
			return nil, fmt.Errorf("value of %q: %w", pair.Key, err)
		}
	}
	if data.Len() > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
