package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainAudit        = "registrar/audit/v1"
	DomainGradeHistory = "registrar/grade-history/v1"
	DomainFingerprint  = "registrar/fingerprint/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func hashObject(domain string, obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}

// AuditRecordID derives the id of the audit record written for a change
// event. Redelivering the same event yields the same id.
func AuditRecordID(ev ChangeEvent) (string, error) {
	id, err := hashObject(DomainAudit, Object{
		"seq":        Int(ev.Seq),
		"collection": Str(ev.Collection),
		"entity_id":  Str(ev.EntityID),
	})
	if err != nil {
		return "", fmt.Errorf("AuditRecordID: %w", err)
	}
	return id, nil
}

// GradeHistoryID derives the id of the grade-history record written for
// an enrollment grade change.
func GradeHistoryID(seq int64, enrollmentID string) (string, error) {
	id, err := hashObject(DomainGradeHistory, Object{
		"seq":           Int(seq),
		"enrollment_id": Str(enrollmentID),
	})
	if err != nil {
		return "", fmt.Errorf("GradeHistoryID: %w", err)
	}
	return id, nil
}

// Fingerprint hashes the changed content of an event: its collection,
// entity, operation and the after-values of the changed fields.
// Two events with the same fingerprint describe the same effect.
func Fingerprint(ev ChangeEvent) (string, error) {
	changed := Object{}
	for _, f := range ev.Changed {
		if v, ok := ev.After[f]; ok {
			changed[f] = v
		}
	}
	id, err := hashObject(DomainFingerprint, Object{
		"collection": Str(ev.Collection),
		"entity_id":  Str(ev.EntityID),
		"op":         Str(ev.Op),
		"changed":    Strings(ev.Changed),
		"after":      changed,
	})
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	return id, nil
}
