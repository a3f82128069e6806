// Package asyncjob is the client-side surface for render job submission:
// submit, poll, cancel against a Temporal workflow execution keyed by
// job id. No workflow or activity logic lives here — rendering itself is
// out of scope; this only starts/watches/cancels whatever render worker is
// listening on the configured task queue.
package asyncjob

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/clipstream/timeline-core/internal/logger"
)

// Status is the coarse job status Poll reports, independent of Temporal's
// own execution-status vocabulary.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusUnknown   Status = "unknown"
)

// RenderWorkflowType is the workflow type name the render worker registers
// under, since the workflow implementation itself lives in a separate
// render-worker binary. Submit starts whatever workflow type its jobType
// argument names; this constant is the jobType for a render.
const RenderWorkflowType = "RenderTimelineWorkflow"

type Client struct {
	sdk temporalsdkclient.Client
	cfg Config
	log *logger.Logger
}

// NewClient dials Temporal, retrying with backoff up to cfg.DialMaxWait.
// A blank TEMPORAL_ADDRESS disables the client: Submit/Poll/Cancel then
// return an error rather than panicking on a nil sdk client.
func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	jobLog := log.With("service", "AsyncJobClient")
	if cfg.Address == "" {
		jobLog.Warn("TEMPORAL_ADDRESS not set; async job client disabled")
		return &Client{cfg: cfg, log: jobLog}, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	}
	if cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		dctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		sdk, err := temporalsdkclient.DialContext(dctx, opts)
		cancel()
		if err == nil {
			jobLog.Info("connected to temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			return &Client{sdk: sdk, cfg: cfg, log: jobLog}, nil
		}
		if cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		jobLog.Warn("temporal not reachable, retrying", "attempt", attempt, "error", err)
		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("async job tls: both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("async job tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("async job tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("async job tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// Submit starts a render workflow execution for one job, returning the
// workflow id the caller should persist as the render job's job_id.
func (c *Client) Submit(ctx context.Context, jobType string, payload any) (string, error) {
	if c.sdk == nil {
		return "", fmt.Errorf("async job client disabled: TEMPORAL_ADDRESS not set")
	}
	jobID := fmt.Sprintf("render-%s", uuid.NewString())
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        jobID,
		TaskQueue: c.cfg.TaskQueue,
	}
	run, err := c.sdk.ExecuteWorkflow(ctx, opts, jobType, payload)
	if err != nil {
		return "", fmt.Errorf("submit render job: %w", err)
	}
	return run.GetID(), nil
}

// Poll reports the coarse status of a previously submitted job.
func (c *Client) Poll(ctx context.Context, jobID string) (Status, error) {
	if c.sdk == nil {
		return StatusUnknown, fmt.Errorf("async job client disabled: TEMPORAL_ADDRESS not set")
	}
	desc, err := c.sdk.DescribeWorkflowExecution(ctx, jobID, "")
	if err != nil {
		return StatusUnknown, fmt.Errorf("poll render job %q: %w", jobID, err)
	}
	info := desc.GetWorkflowExecutionInfo()
	if info == nil {
		return StatusUnknown, nil
	}
	switch info.GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return StatusRunning, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StatusCompleted, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED, enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return StatusFailed, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED, enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return StatusCanceled, nil
	default:
		return StatusUnknown, nil
	}
}

// Cancel requests cancellation of a running job. Any error the SDK
// reports is returned wrapped; a job that has already finished is not
// treated specially.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if c.sdk == nil {
		return fmt.Errorf("async job client disabled: TEMPORAL_ADDRESS not set")
	}
	if err := c.sdk.CancelWorkflow(ctx, jobID, ""); err != nil {
		return fmt.Errorf("cancel render job %q: %w", jobID, err)
	}
	return nil
}
