package taxonomy

import "testing"

func TestDeriveFromTagPrefixes(t *testing.T) {
	tax := Derive("Mystery Snack", "", []string{"animal:venison", "flavor:teriyaki", "protein:game"})
	if tax.AnimalType != "venison" || tax.ProteinCategory != "game" {
		t.Fatalf("unexpected animal/protein: %+v", tax)
	}
	if tax.FlavorPrimary != "teriyaki" || tax.FlavorDisplay != "Teriyaki" {
		t.Fatalf("unexpected flavor: %+v", tax)
	}
}

func TestDeriveFromTitleKeywords(t *testing.T) {
	tax := Derive("Peppered Beef Jerky", "Beef Jerky", []string{"rankable"})
	if tax.AnimalType != "beef" || tax.ProteinCategory != "red_meat" {
		t.Fatalf("unexpected animal: %+v", tax)
	}
	if tax.FlavorPrimary != "peppered" {
		t.Fatalf("unexpected flavor: %+v", tax)
	}
}

func TestDeriveSecondaryFlavor(t *testing.T) {
	tax := Derive("Sweet Spicy Elk Strips", "", nil)
	if tax.FlavorPrimary != "sweet" || tax.FlavorSecondary != "spicy" {
		t.Fatalf("expected sweet/spicy, got %+v", tax)
	}
	if tax.AnimalType != "elk" || tax.ProteinCategory != "game" {
		t.Fatalf("unexpected animal: %+v", tax)
	}
}

func TestDeriveUnknownProduct(t *testing.T) {
	tax := Derive("Gift Card", "Gift Cards", nil)
	if tax.AnimalType != "" || tax.FlavorPrimary != "" || tax.ProteinCategory != "" {
		t.Fatalf("expected empty taxonomy, got %+v", tax)
	}
}
