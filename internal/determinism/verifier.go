package determinism

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/types"
)

// volatileELFSections are stripped before a structural/fuzzy comparison
// because they legitimately vary between otherwise-identical builds
// (GNU build-id note sections, .comment).
var volatileELFSections = map[string]bool{
	".note.gnu.build-id": true,
	".comment":           true,
}

// RunOutputs is one build run's set of output files, keyed by a
// workspace-relative path so runs A and B can be compared pairwise.
type RunOutputs map[string]string // relative path -> absolute path on disk

// Verifier compares two runs' outputs for determinism using one of the
// four comparison strategies.
type Verifier struct {
	hasher *hasher.Hasher
}

// New creates a Verifier.
func New(h *hasher.Hasher) *Verifier {
	return &Verifier{hasher: h}
}

// Verify compares runA against runB using strategy, returning a
// VerificationResult with a per-file violation list.
func (v *Verifier) Verify(strategy types.VerificationStrategy, runA, runB RunOutputs) (types.VerificationResult, error) {
	result := types.VerificationResult{Strategy: strategy}

	paths := unionKeys(runA, runB)
	result.TotalFiles = len(paths)

	for _, rel := range paths {
		pathA, okA := runA[rel]
		pathB, okB := runB[rel]
		if !okA || !okB {
			result.Violations = append(result.Violations, types.FileVerdict{
				Path:    rel,
				Matched: false,
				ReasonA: presence(okA),
				ReasonB: presence(okB),
			})
			continue
		}

		matched, digestA, digestB, err := v.compare(strategy, pathA, pathB)
		if err != nil {
			return result, fmt.Errorf("determinism: comparing %s: %w", rel, err)
		}
		if matched {
			result.MatchingFiles++
			continue
		}
		result.Violations = append(result.Violations, types.FileVerdict{
			Path:    rel,
			Matched: false,
			ReasonA: digestA,
			ReasonB: digestB,
		})
	}

	result.IsDeterministic = len(result.Violations) == 0
	return result, nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func unionKeys(a, b RunOutputs) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (v *Verifier) compare(strategy types.VerificationStrategy, pathA, pathB string) (matched bool, digestA, digestB string, err error) {
	switch strategy {
	case types.VerifyContentHash:
		digestA, err = v.hasher.ContentHash(pathA)
		if err != nil {
			return false, "", "", err
		}
		digestB, err = v.hasher.ContentHash(pathB)
		if err != nil {
			return false, "", "", err
		}
		return digestA == digestB, digestA, digestB, nil

	case types.VerifyBitExact:
		dataA, err := os.ReadFile(pathA)
		if err != nil {
			return false, "", "", err
		}
		dataB, err := os.ReadFile(pathB)
		if err != nil {
			return false, "", "", err
		}
		return bytes.Equal(dataA, dataB), fmt.Sprintf("%d bytes", len(dataA)), fmt.Sprintf("%d bytes", len(dataB)), nil

	case types.VerifyFuzzy:
		normA, err := normalize(pathA)
		if err != nil {
			return false, "", "", err
		}
		normB, err := normalize(pathB)
		if err != nil {
			return false, "", "", err
		}
		return bytes.Equal(normA, normB), fmt.Sprintf("%d bytes normalized", len(normA)), fmt.Sprintf("%d bytes normalized", len(normB)), nil

	case types.VerifyStructural:
		return v.compareStructural(pathA, pathB)

	default:
		return false, "", "", fmt.Errorf("determinism: unknown verification strategy %q", strategy)
	}
}

// normalize strips known non-deterministic fields before a fuzzy
// comparison: ar member headers (mtime/uid/gid), and volatile ELF
// sections. Files that match neither format pass through unchanged.
func normalize(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isARArchive(data) {
		return stripARMetadata(data), nil
	}
	if f, err := elf.NewFile(bytes.NewReader(data)); err == nil {
		defer f.Close()
		return stripELFVolatileSections(data, f), nil
	}
	return data, nil
}

// compareStructural is format-aware like normalize, but reports which
// structural element differed rather than a flat byte count.
func (v *Verifier) compareStructural(pathA, pathB string) (bool, string, string, error) {
	dataA, err := os.ReadFile(pathA)
	if err != nil {
		return false, "", "", err
	}
	dataB, err := os.ReadFile(pathB)
	if err != nil {
		return false, "", "", err
	}

	fileA, errA := elf.NewFile(bytes.NewReader(dataA))
	fileB, errB := elf.NewFile(bytes.NewReader(dataB))
	if errA == nil && errB == nil {
		defer fileA.Close()
		defer fileB.Close()
		return compareELF(fileA, fileB)
	}

	if isARArchive(dataA) && isARArchive(dataB) {
		strippedA := stripARMetadata(dataA)
		strippedB := stripARMetadata(dataB)
		return bytes.Equal(strippedA, strippedB), fmt.Sprintf("%d bytes", len(strippedA)), fmt.Sprintf("%d bytes", len(strippedB)), nil
	}

	return bytes.Equal(dataA, dataB), fmt.Sprintf("%d bytes", len(dataA)), fmt.Sprintf("%d bytes", len(dataB)), nil
}

func compareELF(a, b *elf.File) (bool, string, string, error) {
	sectionsA := significantSections(a)
	sectionsB := significantSections(b)
	if len(sectionsA) != len(sectionsB) {
		return false, fmt.Sprintf("%d sections", len(sectionsA)), fmt.Sprintf("%d sections", len(sectionsB)), nil
	}
	for name, dataA := range sectionsA {
		dataB, ok := sectionsB[name]
		if !ok || !bytes.Equal(dataA, dataB) {
			return false, "section " + name + " differs", "section " + name + " differs", nil
		}
	}
	return true, "", "", nil
}

func significantSections(f *elf.File) map[string][]byte {
	out := make(map[string][]byte, len(f.Sections))
	for _, s := range f.Sections {
		if volatileELFSections[s.Name] {
			continue
		}
		data, err := s.Data()
		if err != nil {
			continue
		}
		out[s.Name] = data
	}
	return out
}

func stripELFVolatileSections(data []byte, f *elf.File) []byte {
	out := append([]byte(nil), data...)
	for _, s := range f.Sections {
		if !volatileELFSections[s.Name] {
			continue
		}
		start := int64(s.Offset)
		end := start + int64(s.Size)
		if start < 0 || end > int64(len(out)) || start > end {
			continue
		}
		for i := start; i < end; i++ {
			out[i] = 0
		}
	}
	return out
}

const arGlobalHeader = "!<arch>\n"
const arMemberHeaderSize = 60

func isARArchive(data []byte) bool {
	return len(data) >= len(arGlobalHeader) && string(data[:len(arGlobalHeader)]) == arGlobalHeader
}

// stripARMetadata zeroes the mtime/uid/gid fields of every Unix ar
// member header, per the classic ar(5) fixed-width header layout:
// name(16) mtime(12) uid(6) gid(6) mode(8) size(10) end(2).
func stripARMetadata(data []byte) []byte {
	out := append([]byte(nil), data...)
	offset := len(arGlobalHeader)
	for offset+arMemberHeaderSize <= len(out) {
		header := out[offset : offset+arMemberHeaderSize]
		blankField(header, 16, 12) // mtime
		blankField(header, 28, 6)  // uid
		blankField(header, 34, 6)  // gid

		sizeField := string(bytes.TrimSpace(header[48:58]))
		size := parseDecimal(sizeField)
		memberStart := offset + arMemberHeaderSize
		memberEnd := memberStart + size
		if memberEnd > len(out) {
			break
		}
		offset = memberEnd
		if offset%2 == 1 {
			offset++ // members are 2-byte aligned
		}
	}
	return out
}

func blankField(header []byte, start, length int) {
	for i := start; i < start+length && i < len(header); i++ {
		header[i] = ' '
	}
}

func parseDecimal(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
