package indicators

import (
	"fmt"

	apperrors "levelscope/internal/errors"
	"levelscope/internal/models"
)

// DefaultValueAreaPercent is the share of volume inside the value area.
const DefaultValueAreaPercent = 0.70

// VolumeProfile calculates volume distribution at price levels.
type VolumeProfile struct {
	numBins          int
	valueAreaPercent float64
}

// NewVolumeProfile creates a new Volume Profile indicator.
func NewVolumeProfile(numBins int) *VolumeProfile {
	return &VolumeProfile{numBins: numBins, valueAreaPercent: DefaultValueAreaPercent}
}

func (v *VolumeProfile) Name() string {
	return fmt.Sprintf("VolumeProfile_%d", v.numBins)
}

func (v *VolumeProfile) Period() int {
	return 1
}

// PriceVolume is the volume traded in one price bin.
type PriceVolume struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// VolumeProfileResult holds the volume profile data.
type VolumeProfileResult struct {
	VolumeByPrice []PriceVolume `json:"volume_by_price"`
	TotalVolume   float64       `json:"total_volume"`
	POC           float64       `json:"poc"` // Point of Control (price with highest volume)
	VAH           float64       `json:"value_area_high"`
	VAL           float64       `json:"value_area_low"`
}

// CalculateProfile calculates the volume profile for the given candles.
// Each candle's volume is spread evenly over the bins its range covers.
func (v *VolumeProfile) CalculateProfile(candles []models.Candle) (*VolumeProfileResult, error) {
	if len(candles) == 0 {
		return nil, apperrors.NewInsufficientDataError("volume profile", 1, 0)
	}
	if v.numBins <= 0 {
		return nil, apperrors.NewValidationError("num_bins", v.numBins, "must be positive")
	}

	maxPrice := highest(highPrices(candles))
	minPrice := lowest(lowPrices(candles))

	var totalVol float64
	for _, c := range candles {
		totalVol += c.Volume
	}

	if maxPrice == minPrice {
		return &VolumeProfileResult{
			VolumeByPrice: []PriceVolume{{Price: maxPrice, Volume: totalVol}},
			TotalVolume:   totalVol,
			POC:           maxPrice,
			VAH:           maxPrice,
			VAL:           minPrice,
		}, nil
	}

	binSize := (maxPrice - minPrice) / float64(v.numBins)
	bins := make([]PriceVolume, v.numBins)
	for i := range bins {
		bins[i].Price = minPrice + float64(i)*binSize + binSize/2
	}

	binOf := func(price float64) int {
		idx := int((price - minPrice) / binSize)
		if idx >= v.numBins {
			idx = v.numBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		return idx
	}

	for _, c := range candles {
		lo, hi := binOf(c.Low), binOf(c.High)
		share := c.Volume / float64(hi-lo+1)
		for i := lo; i <= hi; i++ {
			bins[i].Volume += share
		}
	}

	// POC is the first bin holding the maximum volume
	pocIdx := 0
	for i, b := range bins {
		if b.Volume > bins[pocIdx].Volume {
			pocIdx = i
		}
	}

	// Expand from POC until the value area share is captured
	targetVol := totalVol * v.valueAreaPercent
	vahIdx, valIdx := pocIdx, pocIdx
	vaVol := bins[pocIdx].Volume

	for vaVol < targetVol && (vahIdx < v.numBins-1 || valIdx > 0) {
		var upperVol, lowerVol float64
		if vahIdx < v.numBins-1 {
			upperVol = bins[vahIdx+1].Volume
		}
		if valIdx > 0 {
			lowerVol = bins[valIdx-1].Volume
		}

		if upperVol >= lowerVol && vahIdx < v.numBins-1 {
			vahIdx++
			vaVol += bins[vahIdx].Volume
		} else if valIdx > 0 {
			valIdx--
			vaVol += bins[valIdx].Volume
		} else {
			break
		}
	}

	return &VolumeProfileResult{
		VolumeByPrice: bins,
		TotalVolume:   totalVol,
		POC:           bins[pocIdx].Price,
		VAH:           bins[vahIdx].Price,
		VAL:           bins[valIdx].Price,
	}, nil
}
