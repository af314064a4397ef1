package rembg

import "image"

// Normalization 网络输入的逐通道均值/方差，加载时给定一次，不随图片变化
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

// DefaultNormalization U2Net 系列使用的 ImageNet 统计量
func DefaultNormalization() Normalization {
	return Normalization{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
}

// imageToTensor 把 SxS 图片转成 CHW 排布的 float32 张量 (1,3,S,S)
func imageToTensor(img *image.NRGBA, size int, norm Normalization) []float32 {
	data := make([]float32, 3*size*size)
	plane := size * size

	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+size*4]
		for x := 0; x < size; x++ {
			base := x * 4
			r := (float32(row[base+0])/255.0 - norm.Mean[0]) / norm.Std[0]
			g := (float32(row[base+1])/255.0 - norm.Mean[1]) / norm.Std[1]
			b := (float32(row[base+2])/255.0 - norm.Mean[2]) / norm.Std[2]
			data[y*size+x] = r
			data[plane+y*size+x] = g
			data[2*plane+y*size+x] = b
		}
	}
	return data
}
