// Package refdata holds the static lookup tables served to every view:
// Odisha districts and taluks, the demo farmer roster, the crop
// catalogue, warehouses and mock shipment routes.
package refdata

import (
	"sort"
	"strings"

	"greenledger/internal/models"
)

var districts = []models.District{
	{Name: "Angul", Taluks: []string{"Angul", "Athamallik", "Chhendipada", "Pallahara", "Talcher"}},
	{Name: "Balangir", Taluks: []string{"Balangir", "Patnagarh", "Titilagarh", "Kantabanji", "Loisingha"}},
	{Name: "Balasore", Taluks: []string{"Balasore", "Jaleswar", "Nilagiri", "Soro", "Basta"}},
	{Name: "Bargarh", Taluks: []string{"Bargarh", "Attabira", "Bijepur", "Padampur", "Sohela"}},
	{Name: "Bhadrak", Taluks: []string{"Bhadrak", "Basudevpur", "Chandbali", "Dhamnagar"}},
	{Name: "Boudh", Taluks: []string{"Boudh", "Harabhanga", "Kantamal"}},
	{Name: "Cuttack", Taluks: []string{"Cuttack Sadar", "Athagarh", "Banki", "Salepur", "Niali"}},
	{Name: "Deogarh", Taluks: []string{"Deogarh", "Barkote", "Reamal"}},
	{Name: "Dhenkanal", Taluks: []string{"Dhenkanal", "Hindol", "Kamakhyanagar", "Parjang"}},
	{Name: "Gajapati", Taluks: []string{"Paralakhemundi", "Mohana", "R. Udayagiri"}},
	{Name: "Ganjam", Taluks: []string{"Berhampur", "Chhatrapur", "Aska", "Bhanjanagar", "Hinjili"}},
	{Name: "Jagatsinghpur", Taluks: []string{"Jagatsinghpur", "Kujang", "Tirtol", "Balikuda"}},
	{Name: "Jajpur", Taluks: []string{"Jajpur", "Binjharpur", "Dharmasala", "Korei", "Sukinda"}},
	{Name: "Jharsuguda", Taluks: []string{"Jharsuguda", "Brajarajnagar", "Lakhanpur"}},
	{Name: "Kalahandi", Taluks: []string{"Bhawanipatna", "Dharamgarh", "Junagarh", "Kesinga"}},
	{Name: "Kandhamal", Taluks: []string{"Phulbani", "Baliguda", "G. Udayagiri"}},
	{Name: "Kendrapara", Taluks: []string{"Kendrapara", "Aul", "Pattamundai", "Rajnagar"}},
	{Name: "Kendujhar", Taluks: []string{"Kendujhar", "Anandapur", "Champua", "Ghatagaon"}},
	{Name: "Khordha", Taluks: []string{"Bhubaneswar", "Khordha", "Jatni", "Balipatna", "Tangi"}},
	{Name: "Koraput", Taluks: []string{"Koraput", "Jeypore", "Kotpad", "Semiliguda"}},
	{Name: "Malkangiri", Taluks: []string{"Malkangiri", "Chitrakonda", "Mathili"}},
	{Name: "Mayurbhanj", Taluks: []string{"Baripada", "Karanjia", "Rairangpur", "Udala"}},
	{Name: "Nabarangpur", Taluks: []string{"Nabarangpur", "Umerkote", "Papadahandi"}},
	{Name: "Nayagarh", Taluks: []string{"Nayagarh", "Daspalla", "Khandapada", "Odagaon"}},
	{Name: "Nuapada", Taluks: []string{"Nuapada", "Khariar", "Komna"}},
	{Name: "Puri", Taluks: []string{"Puri", "Nimapara", "Pipili", "Brahmagiri", "Satyabadi"}},
	{Name: "Rayagada", Taluks: []string{"Rayagada", "Gunupur", "Bissam Cuttack"}},
	{Name: "Sambalpur", Taluks: []string{"Sambalpur", "Kuchinda", "Rairakhol", "Burla"}},
	{Name: "Subarnapur", Taluks: []string{"Sonepur", "Binka", "Birmaharajpur"}},
	{Name: "Sundargarh", Taluks: []string{"Sundargarh", "Rourkela", "Bonai", "Rajgangpur"}},
}

// Districts returns every district, sorted by name
func Districts() []models.District {
	out := make([]models.District, len(districts))
	for i, d := range districts {
		out[i] = models.District{Name: d.Name, Taluks: append([]string(nil), d.Taluks...)}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DistrictByName looks a district up case-insensitively
func DistrictByName(name string) (models.District, bool) {
	for _, d := range districts {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return models.District{Name: d.Name, Taluks: append([]string(nil), d.Taluks...)}, true
		}
	}
	return models.District{}, false
}

// TaluksOf returns the taluks of a district, nil for an unknown district
func TaluksOf(district string) []string {
	d, ok := DistrictByName(district)
	if !ok {
		return nil
	}
	return d.Taluks
}
