package datasource

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Location
	}{
		{"s3a://udacity-dend/song_data/*/*/*/*.json", Location{SchemeS3, "udacity-dend", "song_data/*/*/*/*.json"}},
		{"s3://bucket/", Location{SchemeS3, "bucket", ""}},
		{"s3n://bucket", Location{SchemeS3, "bucket", ""}},
		{"data/log_data/*.json", Location{SchemeFile, "", "data/log_data/*.json"}},
		{"file:///tmp/out/", Location{SchemeFile, "", "/tmp/out/"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "s3a:///key", "gs://bucket/x"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", bad)
		}
	}
}

func TestLocationJoinAndString(t *testing.T) {
	l, _ := Parse("s3a://udacity-dend/")
	if got, want := l.Join("songs_table").String(), "s3://udacity-dend/songs_table"; got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}
	l, _ = Parse("data/out")
	if got, want := l.Join("/users_table").String(), "data/out/users_table"; got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}
}

func TestLiteralPrefix(t *testing.T) {
	if got, want := LiteralPrefix("song_data/A/*/*/*.json"), "song_data/A/"; got != want {
		t.Fatalf("LiteralPrefix = %q, want %q", got, want)
	}
	if got, want := LiteralPrefix("log_data/2018-11-01-events.json"), "log_data/2018-11-01-events.json"; got != want {
		t.Fatalf("LiteralPrefix = %q, want %q", got, want)
	}
}
