package video

import "testing"

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name        string
		visible     bool
		freePreview bool
		price       int
		enrolled    bool
		want        bool
	}{
		{"hidden denies everyone", false, false, 0, true, false},
		{"hidden denies even free preview", false, true, 0, true, false},
		{"hidden denies paid enrolled", false, false, 100, true, false},
		{"hidden denies paid unenrolled", false, true, 100, false, false},
		{"free preview bypasses enrollment", true, true, 100, false, true},
		{"free preview on free course", true, true, 0, false, true},
		{"free course open to all", true, false, 0, false, true},
		{"free course enrolled", true, false, 0, true, true},
		{"paid requires enrollment", true, false, 100, false, false},
		{"paid enrolled allowed", true, false, 100, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Video{Visible: tc.visible, FreePreview: tc.freePreview}
			if got := CanAccess(v, tc.price, tc.enrolled); got != tc.want {
				t.Fatalf("CanAccess(visible=%v, preview=%v, price=%d, enrolled=%v) = %v, want %v",
					tc.visible, tc.freePreview, tc.price, tc.enrolled, got, tc.want)
			}
		})
	}
}
