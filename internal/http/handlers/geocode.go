package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mdms/backend/internal/geocode"
)

// @Summary Reverse geocode
// @Tags geocode
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Success 200 {object} geocode.Address
// @Router /api/geocode [get]
func (h *Handler) Geocode(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || !geocode.ValidCoordinates(lat, lon) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "lat and lon must be valid coordinates", nil)
		return
	}
	if h.Geocoder == nil {
		c.JSON(http.StatusOK, geocode.Address{Area: geocode.Unknown, District: geocode.Unknown})
		return
	}
	addr, err := h.Geocoder.Reverse(c.Request.Context(), lat, lon)
	if errors.Is(err, geocode.ErrNotFound) {
		c.JSON(http.StatusOK, geocode.Address{Area: geocode.Unknown, District: geocode.Unknown})
		return
	}
	if err != nil {
		writeError(c, http.StatusBadGateway, "GEOCODER_UNAVAILABLE", "Reverse geocoding failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, addr)
}
