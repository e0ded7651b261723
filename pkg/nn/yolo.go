package nn

import "fmt"

// Quantization describes an affine uint8 quantization: real = (q - ZeroPoint) * Scale
type Quantization struct {
	Scale     float32 `json:"scale"`
	ZeroPoint int32   `json:"zeroPoint"`
}

// Dequantize converts raw uint8 model output into float32.
// A zero scale means the values are used as-is.
func Dequantize(raw []uint8, q Quantization) []float32 {
	out := make([]float32, len(raw))
	if q.Scale == 0 {
		for i, v := range raw {
			out[i] = float32(v)
		}
		return out
	}
	for i, v := range raw {
		out[i] = float32(int32(v)-q.ZeroPoint) * q.Scale
	}
	return out
}

// DecodeYOLO decodes a YOLOv5-style output tensor of shape [rows, cols], where each row is
// [cx, cy, w, h, objectness, p0, p1, ... pN]. Coordinates are expected to be normalized.
// The score of a row is objectness * max(p). Rows with objectness or score at or below
// threshold are discarded. The result is in row order, before NMS.
func DecodeYOLO(output []float32, rows, cols int, threshold float32) ([]ObjectDetection, error) {
	if cols < 6 {
		return nil, fmt.Errorf("YOLO output must have at least 6 columns, but has %v", cols)
	}
	if len(output) < rows*cols {
		return nil, fmt.Errorf("YOLO output has %v values, but shape is %v x %v", len(output), rows, cols)
	}
	objects := []ObjectDetection{}
	for r := 0; r < rows; r++ {
		row := output[r*cols : (r+1)*cols]
		obj := row[4]
		if obj <= threshold {
			continue
		}
		cls := 0
		best := row[5]
		for c := 6; c < cols; c++ {
			if row[c] > best {
				best = row[c]
				cls = c - 5
			}
		}
		score := obj * best
		if score <= threshold {
			continue
		}
		objects = append(objects, ObjectDetection{
			Class:      cls,
			Confidence: score,
			Box:        BoxFromCenter(row[0], row[1], row[2], row[3]),
		})
	}
	return objects, nil
}

// Decode the raw output and run NMS, using params (with defaults filled in for zero values)
func DecodeAndSuppress(output []float32, rows, cols int, params *DetectionParams) ([]ObjectDetection, error) {
	if params == nil {
		params = NewDetectionParams()
	}
	p := params.withDefaults()
	objects, err := DecodeYOLO(output, rows, cols, p.ProbabilityThreshold)
	if err != nil {
		return nil, err
	}
	return NMS(objects, p.NmsIouThreshold, p.NmsMaxOutput), nil
}
