package digestcodec

import "sort"

// WriteSortedStringsMap emits a deterministic key-sorted encoding of m,
// skipping empty values.
func WriteSortedStringsMap(w Writer, tmp *[8]byte, m map[string][]string) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if len(v) != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	WriteU64(w, tmp, uint64(len(keys)))
	for _, k := range keys {
		WriteString(w, tmp, k)
		WriteStrings(w, tmp, m[k])
	}
}

func WriteStrings(w Writer, tmp *[8]byte, ss []string) {
	WriteU64(w, tmp, uint64(len(ss)))
	for _, s := range ss {
		WriteString(w, tmp, s)
	}
}
