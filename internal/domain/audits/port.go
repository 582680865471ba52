package audits

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	UpdateStatus(ctx context.Context, id JobID, st Status, errMsg string) error
	SaveReport(ctx context.Context, id JobID, rep *Report, html []byte) error
	HTMLReport(ctx context.Context, id JobID) ([]byte, error)
	Latest(ctx context.Context, limit int) ([]*Job, error)
}

// Producer port: any component that independently contributes findings to a
// job (static analyzer or AI reviewer). Analyze must honour ctx cancellation;
// a failure means "this producer did not run", never "zero findings".
type Producer interface {
	Name() string
	Available() bool
	Analyze(ctx context.Context, ws *Workspace) ([]Finding, error)
}

// Extractor port (interface untuk archive intake)
type Extractor interface {
	Extract(ctx context.Context, data []byte, dest string) (*Workspace, error)
}

// Renderer port untuk report HTML
type Renderer interface {
	Render(rep *Report) ([]byte, error)
}

// Signer port untuk report signing
type Signer interface {
	SignReport(rep *Report) (signature string, publicKey string, err error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	UploadBytes(ctx context.Context, data []byte, key, contentType string) (string, error)
}
