package fp

import "testing"

func TestNormalizeAndFingerprint(t *testing.T) {
	src := "  HTTP://Example.COM/files/a.iso#top  "
	tgt := "  /tmp/dir/../downloads  "
	nu := NormalizeURL(src)
	if nu != "http://example.com/files/a.iso" {
		t.Fatalf("NormalizeURL: %q", nu)
	}
	nt := NormalizeTargetPath(tgt)
	if nt != "/tmp/downloads" {
		t.Fatalf("NormalizeTargetPath: %q", nt)
	}

	fp1 := Fingerprint(src, tgt)
	fp2 := Fingerprint("http://example.com/files/a.iso", "/tmp/downloads")
	if fp1 != fp2 {
		t.Fatalf("fingerprints differ: %s vs %s", fp1, fp2)
	}
	if len(fp1) != 64 { // hex-encoded sha256
		t.Fatalf("unexpected fp length: %d", len(fp1))
	}
}

func TestFingerprintDistinguishesPathAndQuery(t *testing.T) {
	base := Fingerprint("http://example.com/a.iso", "/tmp")
	if Fingerprint("http://example.com/A.iso", "/tmp") == base {
		t.Fatalf("path case must matter")
	}
	if Fingerprint("http://example.com/a.iso?v=2", "/tmp") == base {
		t.Fatalf("query must matter")
	}
	if Fingerprint("http://example.com/a.iso", "/var/tmp") == base {
		t.Fatalf("target must matter")
	}
}
