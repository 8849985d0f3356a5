package services

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Grayscale standard deviation above this reads as a high-contrast label
// scan; those get adaptive thresholding instead of the blur+Otsu path.
const contrastStdDevCutoff = 55.0

// preprocessImage normalizes an input photo for OCR: grayscale, contrast
// adaptive thresholding, denoising and a mild contrast boost. It writes the
// result to a temp PNG and returns its path; the caller removes it.
func preprocessImage(srcPath string) (string, error) {
	img := gocv.IMRead(srcPath, gocv.IMReadColor)
	if img.Empty() {
		return "", fmt.Errorf("could not decode image %s", srcPath)
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	mean := gocv.NewMat()
	stdDev := gocv.NewMat()
	defer mean.Close()
	defer stdDev.Close()
	gocv.MeanStdDev(gray, &mean, &stdDev)
	sd := stdDev.GetDoubleAt(0, 0)

	bin := gocv.NewMat()
	defer bin.Close()
	if sd > contrastStdDevCutoff {
		gocv.AdaptiveThreshold(gray, &bin, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, 31, 15)
	} else {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
		gocv.Threshold(blurred, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	}

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoising(bin, &denoised)

	boosted := gocv.NewMat()
	defer boosted.Close()
	denoised.ConvertToWithParams(&boosted, gocv.MatTypeCV8U, 1.2, 0)

	outPath := filepath.Join(os.TempDir(), "ocr-"+uuid.New().String()+".png")
	if ok := gocv.IMWrite(outPath, boosted); !ok {
		return "", fmt.Errorf("could not write preprocessed image for %s", srcPath)
	}
	return outPath, nil
}
