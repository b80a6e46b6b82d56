package cmd

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"sentibot/pkg/analysis"
	"sentibot/pkg/bus"
	"sentibot/pkg/dispatch"
	"sentibot/pkg/funfact"
)

type stubSentiment struct{ texts []string }

func (s *stubSentiment) AnalyzeSentiment(_ context.Context, text string) (analysis.SentimentResult, error) {
	s.texts = append(s.texts, text)
	return analysis.SentimentResult{Label: analysis.LabelNegative, Scores: analysis.Scores{Negative: 1}}, nil
}

type stubVision struct{ urls []string }

func (s *stubVision) AnalyzeImage(_ context.Context, imageURL string) (analysis.ImageResult, error) {
	s.urls = append(s.urls, imageURL)
	return analysis.ImageResult{Caption: "a red bicycle", Tags: []string{"bicycle", "red"}}, nil
}

type zeroSource struct{}

func (zeroSource) IntN(int) int { return 0 }

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestReplyLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOut []string
	}{
		{name: "single line", input: "hello", wantOut: []string{"hello"}},
		{name: "multi line", input: "one\ntwo", wantOut: []string{"one", "two"}},
		{name: "trim outer whitespace", input: "  one\ntwo  ", wantOut: []string{"one", "two"}},
		{name: "empty input", input: "   ", wantOut: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := replyLines(tt.input)
			if !reflect.DeepEqual(got, tt.wantOut) {
				t.Fatalf("replyLines(%q) = %#v, want %#v", tt.input, got, tt.wantOut)
			}
		})
	}
}

func TestResolveInbound(t *testing.T) {
	inbound, ok := resolveInbound([]string{"from", "args"}, " https://example.com/cat.jpg ")
	if !ok || inbound.Kind != bus.KindPhoto {
		t.Fatalf("resolveInbound with image = (%+v, %v), want photo", inbound, ok)
	}
	if inbound.Photos[0].FileID != "https://example.com/cat.jpg" {
		t.Fatalf("photo file id = %q", inbound.Photos[0].FileID)
	}

	inbound, ok = resolveInbound([]string{"hello", "world"}, "")
	if !ok || inbound.Kind != bus.KindText || inbound.Content != "hello world" {
		t.Fatalf("resolveInbound with args = (%+v, %v), want text %q", inbound, ok, "hello world")
	}

	if _, ok := resolveInbound(nil, ""); ok {
		t.Fatal("resolveInbound without input should report no message")
	}
}

func TestInboundForLine(t *testing.T) {
	if got := inboundForLine("HTTPS://example.com/a.png"); got.Kind != bus.KindPhoto {
		t.Fatalf("inboundForLine url kind = %q, want photo", got.Kind)
	}
	if got := inboundForLine("httpd is a server"); got.Kind != bus.KindText {
		t.Fatalf("inboundForLine text kind = %q, want text", got.Kind)
	}
}

func TestRunInteractiveAnalyzesUntilExit(t *testing.T) {
	sentiment := &stubSentiment{}
	vision := &stubVision{}
	dispatcher, err := dispatch.New(sentiment, vision, funfact.New(zeroSource{}, funfact.Overrides{}), nil, nil)
	if err != nil {
		t.Fatalf("dispatch.New error: %v", err)
	}

	in := strings.NewReader("I am sad\n\nhttps://example.com/bike.jpg\nexit\nnever analyzed\n")
	var out bytes.Buffer
	runInteractive(context.Background(), in, &out, dispatcher)

	if !reflect.DeepEqual(sentiment.texts, []string{"I am sad"}) {
		t.Fatalf("sentiment texts = %#v", sentiment.texts)
	}
	if !reflect.DeepEqual(vision.urls, []string{"https://example.com/bike.jpg"}) {
		t.Fatalf("vision urls = %#v", vision.urls)
	}

	output := out.String()
	for _, want := range []string{"Your message sentiment is: negative", `"a red bicycle"`, "Tags: bicycle, red"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}
