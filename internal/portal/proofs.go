package portal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProofJobs hands inline proofs to a background worker.
type ProofJobs interface {
	EnqueueProof(ctx context.Context, permissionID int64) error
}

// WithProofJobs makes ApplyPermission store proofs inline and queue them for
// OffloadProof instead of uploading during the request.
func (s *Service) WithProofJobs(jobs ProofJobs) *Service {
	s.jobs = jobs
	return s
}

func isDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func (s *Service) enqueueProof(ctx context.Context, permissionID int64) {
	if err := s.jobs.EnqueueProof(ctx, permissionID); err != nil {
		// the proof stays inline and is still served from the database
		s.log.Warn("enqueue proof failed", zap.Int64("permission_id", permissionID), zap.Error(err))
	}
}

// OffloadProof moves an inline proof to the ProofStore and stores the
// returned reference. Proofs that are already references are left alone.
func (s *Service) OffloadProof(ctx context.Context, permissionID int64) (bool, error) {
	if s.proofs == nil {
		return false, fmt.Errorf("offload proof %d: no proof store configured", permissionID)
	}
	proof, ok, err := s.repo.PermissionProof(ctx, permissionID)
	if err != nil {
		return false, fmt.Errorf("load proof: %w", err)
	}
	if !ok {
		return false, fail(ErrNotFound, "Permission not found")
	}
	if !isDataURL(proof) {
		return false, nil
	}
	ref, err := s.proofs.StoreProof(ctx, proof)
	if err != nil {
		return false, fmt.Errorf("store proof: %w", err)
	}
	if _, err := s.repo.SetPermissionProof(ctx, permissionID, ref); err != nil {
		return false, fmt.Errorf("save proof reference: %w", err)
	}
	return true, nil
}
