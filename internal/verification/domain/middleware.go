package domain

import (
	"context"
	"log/slog"
	"time"
)

// Service is the verification engine interface consumed by transports and
// middleware.
type Service interface {
	VerifyPackageDeps(ctx context.Context, pkg *CompiledPackage) error
	VerifyPackageRoot(ctx context.Context, pkg *CompiledPackage, addr Address) error
	VerifyPackageRootAndDeps(ctx context.Context, pkg *CompiledPackage, addr Address) error
	VerifyPackage(ctx context.Context, pkg *CompiledPackage, verifyDeps bool, mode SourceMode) error
}

// LoggingMiddleware returns a service middleware that logs every verification
// operation. The engine itself never logs; observability is layered on here.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) VerifyPackageDeps(ctx context.Context, pkg *CompiledPackage) error {
	start := time.Now()
	err := m.next.VerifyPackageDeps(ctx, pkg)
	m.logger.Info("VerifyPackageDeps",
		"package", pkg.Name,
		"deps", len(DependencyClosure(pkg)),
		"result", ErrorKind(err),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) VerifyPackageRoot(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	start := time.Now()
	err := m.next.VerifyPackageRoot(ctx, pkg, addr)
	m.logger.Info("VerifyPackageRoot",
		"package", pkg.Name,
		"address", addr.String(),
		"result", ErrorKind(err),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) VerifyPackageRootAndDeps(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	start := time.Now()
	err := m.next.VerifyPackageRootAndDeps(ctx, pkg, addr)
	m.logger.Info("VerifyPackageRootAndDeps",
		"package", pkg.Name,
		"address", addr.String(),
		"result", ErrorKind(err),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) VerifyPackage(ctx context.Context, pkg *CompiledPackage, verifyDeps bool, mode SourceMode) error {
	start := time.Now()
	err := m.next.VerifyPackage(ctx, pkg, verifyDeps, mode)
	m.logger.Info("VerifyPackage",
		"package", pkg.Name,
		"verifyDeps", verifyDeps,
		"mode", mode.String(),
		"result", ErrorKind(err),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

// VerificationRecord captures one verification outcome for the audit log.
type VerificationRecord struct {
	Package     string
	Fingerprint string
	Address     string
	Operation   string
	Result      string
	Detail      string
	Duration    time.Duration
}

// Recorder persists verification outcomes. Implemented by the storage layer.
type Recorder interface {
	RecordVerification(ctx context.Context, rec VerificationRecord) error
}

// RecordingMiddleware returns a service middleware that writes each outcome
// to the audit log. Recording failures are logged and swallowed: the audit
// trail must never change a verification result.
func RecordingMiddleware(rec Recorder, logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &recordingMiddleware{next: next, rec: rec, logger: logger}
	}
}

type recordingMiddleware struct {
	next   Service
	rec    Recorder
	logger *slog.Logger
}

func (m *recordingMiddleware) record(ctx context.Context, op string, pkg *CompiledPackage, addr string, start time.Time, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	recErr := m.rec.RecordVerification(ctx, VerificationRecord{
		Package:     pkg.Name,
		Fingerprint: pkg.Fingerprint(),
		Address:     addr,
		Operation:   op,
		Result:      ErrorKind(err),
		Detail:      detail,
		Duration:    time.Since(start),
	})
	if recErr != nil {
		m.logger.Warn("recording verification outcome", "operation", op, "package", pkg.Name, "error", recErr)
	}
}

func (m *recordingMiddleware) VerifyPackageDeps(ctx context.Context, pkg *CompiledPackage) error {
	start := time.Now()
	err := m.next.VerifyPackageDeps(ctx, pkg)
	m.record(ctx, "deps", pkg, "", start, err)
	return err
}

func (m *recordingMiddleware) VerifyPackageRoot(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	start := time.Now()
	err := m.next.VerifyPackageRoot(ctx, pkg, addr)
	m.record(ctx, "root", pkg, addr.String(), start, err)
	return err
}

func (m *recordingMiddleware) VerifyPackageRootAndDeps(ctx context.Context, pkg *CompiledPackage, addr Address) error {
	start := time.Now()
	err := m.next.VerifyPackageRootAndDeps(ctx, pkg, addr)
	m.record(ctx, "root_and_deps", pkg, addr.String(), start, err)
	return err
}

func (m *recordingMiddleware) VerifyPackage(ctx context.Context, pkg *CompiledPackage, verifyDeps bool, mode SourceMode) error {
	start := time.Now()
	err := m.next.VerifyPackage(ctx, pkg, verifyDeps, mode)
	m.record(ctx, "dispatch", pkg, "", start, err)
	return err
}
