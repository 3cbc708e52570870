package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNewProducer_Balancer(t *testing.T) {
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("balancer = %T, want *kafka.Hash", p.writer.Balancer)
	}
	if p.writer.Compression != kafka.Zstd {
		t.Fatalf("compression = %v, want zstd", p.writer.Compression)
	}

	p2, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(false))
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p2.Close()
	if _, ok := p2.writer.Balancer.(*kafka.LeastBytes); !ok {
		t.Fatalf("balancer = %T, want *kafka.LeastBytes", p2.writer.Balancer)
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"bytes pass through", []byte("raw"), "raw"},
		{"string pass through", "text", "text"},
		{"struct as json", struct {
			ID string `json:"id"`
		}{"401"}, `{"id":"401"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeValue(tt.value)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("encode = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := encodeValue(make(chan int)); err == nil {
		t.Fatal("expected marshal error for channel")
	}
}
