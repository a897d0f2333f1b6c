package options

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads an options YAML file on top of the defaults and validates it
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func Load(path string) (*Options, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read options: %w", err)
	}

	opts, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return opts, data, nil
}

// Parse decodes YAML bytes on top of Default() and validates the result
// 빈 문서는 기본값 그대로
func Parse(data []byte) (*Options, error) {
	opts := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode options: %w", err)
	}

	if err := Validate(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// Hash generates SHA256 hash from Options (canonical JSON)
// 실행 결과 메타데이터에 기록해 동일 설정 여부 확인
func Hash(opts *Options) (string, error) {
	jsonBytes, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Marshal renders options as YAML (config --show)
func Marshal(opts *Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(opts); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
