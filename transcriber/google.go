package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Google streams to Cloud Speech-to-Text v1. One client is shared by all
// streams.
type Google struct {
	client *speech.Client
}

func NewGoogle(ctx context.Context, credentialsFile string) (*Google, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &Google{client: client}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Close() error { return g.client.Close() }

func (g *Google) Open(ctx context.Context, cfg Config) (Stream, error) {
	encoding, err := googleEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := g.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(cfg.SampleRateHz),
					LanguageCode:    cfg.LanguageCode,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}
	return &googleStream{stream: stream, ctx: sctx, cancel: cancel}, nil
}

type googleStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *googleStream) Send(pcm []byte) error {
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: pcm},
	})
}

func (s *googleStream) CloseSend() error { return s.stream.CloseSend() }

func (s *googleStream) Recv() (Event, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return Event{}, googleRecvError(s.ctx, err)
		}
		if resp.Error != nil && resp.Error.Code != int32(codes.OK) {
			return Event{}, fmt.Errorf("google speech: %w", status.ErrorProto(resp.Error))
		}
		ev, ok := googleEvent(resp)
		if ok {
			return ev, nil
		}
	}
}

func (s *googleStream) Close() error {
	s.cancel()
	return nil
}

// googleEvent maps the first result of a response, the one covering the
// utterance currently being recognized. Responses without results (speech
// events, keepalives) are skipped.
func googleEvent(resp *speechpb.StreamingRecognizeResponse) (Event, bool) {
	if len(resp.Results) == 0 {
		return Event{}, false
	}
	result := resp.Results[0]
	if len(result.Alternatives) == 0 {
		return Event{}, false
	}
	return Event{Text: result.Alternatives[0].Transcript, IsFinal: result.IsFinal}, true
}

// googleRecvError maps a Recv error. Canceled is our own Close only when
// the stream context is done; otherwise the server dropped the stream.
func googleRecvError(ctx context.Context, err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	switch status.Code(err) {
	case codes.Canceled:
		if ctx.Err() != nil {
			return ErrClosed
		}
		return fmt.Errorf("google speech canceled by server: %w", err)
	case codes.OK, codes.Unknown:
		return fmt.Errorf("google speech: %w", err)
	default:
		return fmt.Errorf("google speech %s: %w", status.Code(err), err)
	}
}

func googleEncoding(e Encoding) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch e {
	case EncodingLinear16, "":
		return speechpb.RecognitionConfig_LINEAR16, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", e)
	}
}
