package internaldefs

import (
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// BucketCount is the number of latency buckets including +Inf.
const BucketCount = len(goSession.HistogramBounds) + 1

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that produced a session."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Signed sessions."},
	{ID: goSession.MetricSessionIssueFailure, Name: "gosession_session_issue_failure_total", Help: "Session issue attempts that failed."},
	{ID: goSession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Credentials that passed verification."},
	{ID: goSession.MetricVerifyBadSignature, Name: "gosession_verify_bad_signature_total", Help: "Credentials rejected at the signature check."},
	{ID: goSession.MetricVerifyExpired, Name: "gosession_verify_expired_total", Help: "Credentials rejected as expired."},
	{ID: goSession.MetricVerifyBadAudience, Name: "gosession_verify_bad_audience_total", Help: "Credentials rejected for issuer or audience."},
	{ID: goSession.MetricVerifyXSRFMismatch, Name: "gosession_verify_xsrf_mismatch_total", Help: "Credentials rejected for XSRF mismatch."},
	{ID: goSession.MetricAccountStoreError, Name: "gosession_account_store_error_total", Help: "Account store and login throttle store failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramBounds are the le labels, ending in +Inf.
var HistogramBounds = boundLabels()

// HistogramBoundSeconds are the finite upper bounds in seconds.
var HistogramBoundSeconds = boundSeconds()

// HistogramBoundSuffix are label-safe forms of HistogramBounds.
var HistogramBoundSuffix = boundSuffixes()

func boundSeconds() []float64 {
	out := make([]float64, 0, len(goSession.HistogramBounds))
	for _, d := range goSession.HistogramBounds {
		out = append(out, d.Seconds())
	}
	return out
}

func boundLabels() []string {
	out := make([]string, 0, BucketCount)
	for _, s := range boundSeconds() {
		out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

func boundSuffixes() []string {
	labels := boundLabels()
	out := make([]string, 0, len(labels))
	for _, l := range labels[:len(labels)-1] {
		out = append(out, strings.ReplaceAll(l, ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to Prometheus-style running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
